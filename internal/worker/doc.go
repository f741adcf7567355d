// Package worker implements the render worker lifecycle and Redis Streams integration.
//
// The worker subscribes to a Redis Stream of render requests, renders each
// template through the executor, and publishes the output to a result stream.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	executor := render.NewExecutor(env, engine)
//
//	worker := worker.NewWorker(cfg, redisClient, executor, logger)
//	if err := worker.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Stop(ctx)
//
// Requests are JSON documents stored under the "data" field of a stream entry:
//
//	{"request_id": "42", "template": "json.set('name', author.name)", "context": {"author": {"name": "example"}}}
//	{"request_id": "43", "template_name": "author", "context": {"author": {"name": "example"}}}
//
// Each outcome is a RenderResult. Successes go to the result stream with
// "output"; failures go to "<result stream>.errors" with "error" and a "kind":
// unknown_helper, unknown_partial, recursion_limit, content_shape_conflict,
// timeout or template_error. Both carry "duration_ms" and "timestamp".
//
// A separate HTTP server answers /health, /ready and /registry:
//
//	healthServer := worker.NewHealthServer(8083, redisClient, env, logger)
//	healthServer.AddCheck("partials", func(ctx context.Context) error { ... })
//	healthServer.Start()
//	defer healthServer.Stop()
package worker

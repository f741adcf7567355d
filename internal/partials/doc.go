// Package partials loads partial templates into an environment.
//
// Partials can come from a directory tree, where every *.cel file becomes a
// partial named by its slash-separated path without the extension:
//
//	partials/author.cel        -> "author"
//	partials/blog/post.cel     -> "blog/post"
//
//	n, err := partials.LoadDir(os.DirFS("partials"), env)
//
// or from a Redis hash mapping partial names to sources:
//
//	store := partials.NewRedisStore(redisClient, "render:partials", logger)
//	_ = store.Save(ctx, "author", "json.set('name', author.name)")
//	n, err := store.Load(ctx, env)
package partials

// Package config reads the render worker's settings from the environment.
//
// Settings are grouped by concern: Redis connection, work and result streams,
// partial sources and per-render limits. Every variable has a default suited
// to local development, and Validate reports all problems in one error.
//
//	REDIS_ADDR=redis:6379 PARTIALS_DIR=/etc/render/partials RENDER_TIMEOUT=2s render-worker
package config

// Package cache implements the namespaced cache-aside layer over the
// durable store.
//
// Four namespaces carry recipe content, each with its own TTL policy:
//
//   - popular (6h): trending recipe lists
//   - search (12h): search results per normalized query + filters
//   - similar (24h): similar-recipe sets
//   - instructions (30d, 7d for heuristic extractions): cooking steps
//
// # Basic Usage
//
//	st := store.NewRedisStore(redisClient)
//	orch := cache.NewOrchestrator(st, logging.NewLogger("cache"))
//
//	key := cache.Key("chicken adobo", map[string]any{"diet": []string{"keto"}})
//	val, err := orch.GetOrPopulate(ctx, cache.NamespaceSearch, key, cache.NamespaceSearch.TTL(),
//		func(ctx context.Context) (cache.Result, error) {
//			payload, err := api.Search(ctx, "chicken adobo")
//			return cache.Result{Payload: payload}, err
//		})
//
// On a hit the stored payload is returned with its age and populate is not
// invoked. On a miss the populate result is written through with
// expiresAt = now + ttl, unless the result is flagged Degraded: degraded
// fallback values are served to the caller but never persisted, so the next
// request retries a real populate.
//
// Writes are best-effort. A store failure is logged and the in-memory
// result is still returned; the read path never blocks on persistence.
package cache

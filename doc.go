// Package normcache is a normalized object cache for graph-shaped API
// responses.
//
// A response tree is decomposed into flat records, one per entity, linked
// by key References. Fields observed later are merged into the existing
// record, so one update is visible from every path that reaches the
// entity. Reads rebuild any requested shape from the records and fail as a
// whole when something is missing.
//
// Components:
//   - normalize: response tree -> records (strict merge inside one pass).
//   - reader: records -> response tree (Sequential or Batch).
//   - optimistic: speculative writes journaled per mutation id, revertible.
//   - store/memory: weighted LRU of records; store/kvstore: records encoded
//     into any byte provider (Ristretto, BigCache, Redis).
//
// Keys:
//
//	QUERY_ROOT                    - default root record
//	<id> or <Typename>:<id>       - records named by the cachekey.Resolver
//	<parent>.<fieldKey>[.<index>] - records without a key, named by path
//	hero({"episode":"JEDI"})      - field key with canonical arguments
//
// Write then read:
//
//	changed, _ := s.WriteResponse(ctx, "", sets, tree, vars, nil)
//	out, err := s.ReadResponse(ctx, "", sets, vars, nil)
//	if errors.Is(err, normcache.ErrCacheMiss) { /* go to the network */ }
package normcache

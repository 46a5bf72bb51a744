// Package structgrade grades a predicted nested record against a ground-truth
// record of the same schema. It provides:
//
// - Schema/FieldSpec descriptors built once at registration time (no runtime type probing)
// - A recursive object comparator with a null-aware TP/FD/FA/FN/TN taxonomy
// - Optimal one-to-one alignment of unordered collections (Kuhn-Munkres assignment)
// - A hierarchical confusion tree with derived precision/recall/F1/accuracy
// - A streaming accumulator whose state merges exactly under sharding and batching
//
// Design policy:
// - Keep only public APIs in the root package; put the assignment solver under internal/.
// - Place the schema builder under dsl/, stock comparators under comparators/,
//   schema-file loading under schemafile/, and the CLI under cmd/structgrade.
// - The root package performs no I/O and no logging; persistence hooks are injected.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	s := buildSchema()
//	res, err := structgrade.CompareWith(ctx, s, gt, pred, structgrade.CompareOpt{
//		IncludeConfusionMatrix: true,
//		AddDerivedMetrics:      true,
//	})
//
//	acc := structgrade.NewAccumulator(s, structgrade.BulkOpt{ElideErrors: true})
//	_ = acc.Update(ctx, gt, pred, "doc-1")
//	summary := acc.Compute()
package structgrade

// Package voicegate provides an embeddable Go client for the voicegate speaker
// verification engine, backed by Valkey or Redis with search modules.
//
// The client wires the same services the HTTP API uses, in-process: voiceprints
// live in the enrolled collection, impostor embeddings in the cohort collection,
// and every verification attempt is appended to a SQL history log.
//
//	client, _ := voicegate.New(ctx,
//	    voicegate.WithValkey("localhost:6379", ""),
//	    voicegate.WithPLDAModel("models/plda.msgpack"),
//	)
//	defer client.Close()
//
//	vp, _ := client.Enroll(ctx, "alice", samples)
//	res, _ := client.Verify(ctx, "alice", probe)
//	if res.Verified { ... }
//
// Scores are AS-Norm normalised PLDA log-likelihood ratios; a probe is accepted
// when its normalised score reaches the configured threshold.
package voicegate

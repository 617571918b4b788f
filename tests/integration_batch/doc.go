// Package integration_batch contains integration tests that require River
// job queue workers.
//
// Batch scoring is the only flow that needs running workers, and worker
// startup adds real overhead to the suite. Keeping these tests in their
// own package lets the rest of the integration surface run without it.
//
// Tests in this package:
// - Batch dataset upload, processing, and status polling
// - Schema rejection before enqueue
// - Record-level isolation (bad rows fail alone)
//
// The test helpers in this package START River workers during
// setupTestEnv().
package integration_batch

// Package memkv provides a high-throughput, thread-safe in-memory store with
// Redis-like basics: Set/Get, GETDEL, TTL/Expire, value updates, metrics, and
// a zero-copy read path.
//
// Properties:
//   - Sharded map with per-shard RWMutex (256 shards by default)
//   - TTL plus a background goroutine that reaps expired keys
//   - Reads with copying (safe) or without copying (zero allocations)
//   - Atomic counters for metrics with no hot-path overhead
//   - Minimal allocation on the hot path
//   - Optional total-size limit (Options.MaxBytes)
package memkv

// Running tests and benchmarks
//
// Normal tests and benchmarks:
//   go test -v ./pkg/memkv
//   go test -bench=BenchmarkSetGet_Parallel -benchmem ./pkg/memkv
//
// Heavy perf tests (millions of keys / gigabytes) are gated behind the
// memkv_huge build tag and tuned via environment variables:
//
//   MEMKV_ITEMS=2000000 MEMKV_VALUE_BYTES=1024 \
//     go test -tags memkv_huge -run TestHugeInsert -timeout 0 -v ./pkg/memkv
//   MEMKV_GB=3 MEMKV_VALUE_BYTES=1024 \
//     go test -tags memkv_huge -run TestHugeInsert -timeout 0 -v ./pkg/memkv
//   MEMKV_GB=2 MEMKV_VALUE_BYTES=1024 \
//     go test -tags memkv_huge -run TestMaxBytesHuge -timeout 0 -v ./pkg/memkv
//
// Environment knobs for the heavy tests:
//   MEMKV_ITEMS        — number of entries (ignored by TestHugeInsert when MEMKV_GB is set)
//   MEMKV_VALUE_BYTES  — value size in bytes
//   MEMKV_GB           — target total data volume in gigabytes
//
// The heavy tests consume significant memory; start with smaller values to
// avoid OOM and scale up gradually. Use -timeout 0 to disable the test
// timeout.

/*
Package workers sizes and runs bounded worker pools in containerized
environments.

When running in a container the CPU count reported by runtime.NumCPU is the
host's, not the cgroup limit. Go 1.19+ sets GOMAXPROCS from the limit, so
[Count] and its helpers derive worker counts from GOMAXPROCS instead:

	numWorkers := workers.ForCPU(8)   // 1 per CPU, at most 8
	numWorkers := workers.ForIO(16)   // 2 per CPU, at most 16
	numWorkers := workers.ForMixed(4) // 1.5 per CPU, at most 4

# Environment Variable Override

IMPORT_WORKERS pins the count, still capped by the limit argument:

	env:
	- name: IMPORT_WORKERS
	  value: "2"

# Running a Pool

[Run] fans a slice of items out to n goroutines and blocks until they are
done. The batch importer uses it to push files through the ingestion
pipeline:

	workers.Run(ctx, workers.ForMixed(8), paths, func(ctx context.Context, p string) {
		results <- pipeline.Add(ctx, upload(p), ingest.Options{Soft: true})
	})

All functions are safe for concurrent use.
*/
package workers

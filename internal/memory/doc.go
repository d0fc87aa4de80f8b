// Package memory bounds the memory use of ingestion in containers.
//
// Go does not derive GOMEMLIMIT from cgroup limits. [ConfigureFromEnv] sets
// it from MEMORY_LIMIT (for example via the Kubernetes Downward API) scaled
// by MEMORY_RATIO, unless GOMEMLIMIT is already set:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// A [Monitor] samples the heap against that limit. Above the critical water
// mark it pauses ingestion and forces a collection; below the high water
// mark it resumes. Callers block on [Monitor.WaitIfPaused] before handing a
// file to the pipeline.
package memory

package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyze() string {
	return `Runs the rule catalog over managed-code metadata snapshots and reports defects.

USE WHEN:
- Looking for private or internal methods that nothing calls
- Checking a build before removing code
- Verifying that a suppression entry still matches

INTERPRETING RESULTS:
- outcome is failure when any defect survived suppression, success otherwise
- failure means at least one unsuppressed defect was reported
- Each defect names its rule, target method, severity, confidence and message
- AvoidUncalledPrivateCode reports "unused-private" methods with high confidence
- Methods reported as unused-internal are only unused inside their own assembly
- summary.suppressed counts defects dropped by configured suppressions or thresholds

METRICS RETURNED:
- sources: snapshot files analyzed
- rules: rules that ran
- summary: invocations, per-outcome counts, defects, suppressed
- defects: rule, target, severity, confidence, message`
}

func describeReachability() string {
	return `Classifies every method in the snapshots as reachable, unreachable or not applicable.

USE WHEN:
- Estimating how much dead code a type or assembly carries
- Finding which types to clean up first
- Explaining why a method was or was not reported

INTERPRETING RESULTS:
- Only types with at least one unreachable method are listed, worst first
- candidates excludes entry points, static constructors, event accessors and generated code
- dead_percentage is unreachable / candidates for the type
- reason tells which check decided the verdict (e.g. unused-private, unused-internal)
- by_reason in the summary counts verdicts per deciding check

METRICS RETURNED:
- Per-type: methods, candidates, unreachable, dead_percentage, items
- Summary: assemblies, types, methods, candidates, unreachable methods, by_reason`
}

func describeInspect() string {
	return `Answers the capability queries for every method of a type: entry point, visibility, generated code, overrides and more.

USE WHEN:
- A dead code verdict looks wrong and you need the underlying facts
- Checking whether a method is externally visible
- Listing property and event accessors of a type

INTERPRETING RESULTS:
- visible means callable from outside the assembly through a public or protected chain
- entry_point is true for the assembly entry point and for Main-shaped methods
- generated marks compiler or tool generated code, which is never reported
- verdict is the reachability status and the check that decided it
- calls lists the IDs of methods referenced directly from the type's method bodies
- links lists unresolved type and method references per snapshot

METRICS RETURNED:
- Per-type: assembly, visibility, generated flag, calls, method facts
- Per-method: access, abstract, entry_point, main, finalizer, generated, override, visible, event_callback, property, verdict`
}

func describeCallGraph() string {
	return `Builds the method call graph of the snapshots and ranks methods by PageRank.

USE WHEN:
- Finding the most central methods of an assembly
- Listing methods unreachable from any root (entry points and visible methods)
- Spotting recursion cycles

INTERPRETING RESULTS:
- roots are methods callable from outside: entry points, visible methods, type initializers, finalizers and overridable methods
- unreachable lists methods no root can reach through direct calls
- A high PageRank means many paths lead to the method; changes there ripple widely
- recursion_groups are strongly connected components with more than one method

METRICS RETURNED:
- methods, edges, roots, reachable counts
- unreachable, self_recursive, recursion_groups
- top_ranked: method, pagerank, callers, callees`
}

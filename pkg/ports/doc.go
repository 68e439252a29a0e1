/*
Package ports defines the driven ports (interfaces) of the explanation engine.

The core never solves a model itself. Expected values of an induced chain and
optimal policies of an XMDP come from external oracles reached through these
interfaces, so the analysis code works unchanged against a solver process, a
scripted test double, or a cached result.

# Key Interfaces

  - ModelEvaluator: expected QA values, costs and event counts of an induced chain.
  - PolicyOptimizer: optimal policy of an XMDP under an objective and constraints.
  - Session / SessionFactory: one oracle connection per worker.
  - ResultCache: evaluated policies keyed by policy content.
  - DistributedLocker: coordination across replicas sharing a cache.
*/
package ports

/*
Package xplanning computes and explains policies of factored, multi-objective Markov decision processes.

A model is built from factored state variables, actions grouped into definitions, and one
probabilistic STRIPS-like operator (FactoredPSO) per action definition. Quality attributes are
measured by QFunctions and combined into an additive, scaled cost function. Solving and
evaluating are delegated to external oracles reached through ports.SessionFactory, so the
library never runs a model checker or an LP solver itself.

# Explaining a policy

For a solution policy, the Explainer evaluates its expected quality-attribute values and then,
for every QFunction, asks the optimizer for the best policy of the remaining objectives that
improves that attribute by at least one cost step. Every distinct alternative is compared with
the solution as a Tradeoff of gains and losses.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/xplanning"
		"github.com/aretw0/xplanning/pkg/adapters/process"
		"github.com/aretw0/xplanning/pkg/analysis"
	)

	func main() {
		x := buildModel() // *mdp.XMDP

		solver, err := process.NewFactory(process.Config{Command: "solver"})
		if err != nil {
			log.Fatal(err)
		}

		exp := xplanning.New(solver, xplanning.WithAnalysisOptions(analysis.WithConcurrency(4)))
		explanation, err := exp.SolveAndExplain(context.Background(), x)
		if err != nil {
			log.Fatal(err)
		}
		for _, alt := range explanation.Alternatives {
			log.Println(alt.Target, alt.Tradeoff.GainNames(), alt.Tradeoff.LossNames())
		}
	}
*/
package xplanning

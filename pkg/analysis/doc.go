/*
Package analysis evaluates policies and explains them through their alternatives.

An Evaluator turns a policy into a policy.Info using a ports.ModelEvaluator.
An Explorer searches, for every QFunction, the best policy of the remaining
objectives that improves that QFunction's attribute cost by at least one step,
and a Tradeoff compares each alternative with the solution.
*/
package analysis

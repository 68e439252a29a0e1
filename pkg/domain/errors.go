package domain

import "errors"

// ErrInvalidValue is returned when a Go value cannot be represented as a Value.
var ErrInvalidValue = errors.New("invalid value")

// ErrInvalidDefinition is returned when a variable or action definition is malformed
// (empty name, empty or duplicated domain).
var ErrInvalidDefinition = errors.New("invalid definition")

// ErrVarNotFound is returned when a tuple has no assignment for a requested variable.
var ErrVarNotFound = errors.New("state variable not found")

// ErrIncompatibleVar is returned when a value lies outside its variable's domain,
// when a tuple assigns one variable twice, or when a variable is not part of a structure.
var ErrIncompatibleVar = errors.New("incompatible state variable")

// ErrActionNotFound is returned when an action is unknown to the queried space or table.
var ErrActionNotFound = errors.New("action not found")

// ErrIncompatibleAction is returned when an action is not a member of the definition it is used with.
var ErrIncompatibleAction = errors.New("incompatible action")

// ErrActionDefinitionNotFound is returned when no transition model is registered for an action definition.
var ErrActionDefinitionNotFound = errors.New("action definition not found")

// ErrActionNotApplicable is returned when a precondition rejects an action in a state.
var ErrActionNotApplicable = errors.New("action not applicable")

// ErrAttributeNotFound is returned when an action has no attribute with the requested name.
var ErrAttributeNotFound = errors.New("attribute not found")

// ErrDiscriminantNotFound is returned when no effect is registered for a discriminant.
var ErrDiscriminantNotFound = errors.New("discriminant not found")

// ErrEffectClassNotFound is returned when no action description is registered for an effect class.
var ErrEffectClassNotFound = errors.New("effect class not found")

// ErrIncompatibleEffectClass is returned when effect classes overlap, or an effect
// does not match the class it is used with.
var ErrIncompatibleEffectClass = errors.New("incompatible effect class")

// ErrIncompatibleDiscriminantClass is returned when a discriminant does not match its class.
var ErrIncompatibleDiscriminantClass = errors.New("incompatible discriminant class")

// ErrInvalidDistribution is returned when a probabilistic effect has negative
// probabilities or does not sum to one.
var ErrInvalidDistribution = errors.New("invalid probability distribution")

// ErrStateNotFound is returned when a policy or state index has no entry for a state.
var ErrStateNotFound = errors.New("state not found")

// ErrConflictingDecision is returned when a policy assigns two actions to the same state.
var ErrConflictingDecision = errors.New("conflicting decision")

// ErrQFunctionNotFound is returned when a QFunction is not part of the queried space.
var ErrQFunctionNotFound = errors.New("qfunction not found")

// ErrOverlappingEvents is returned when more than one event of an event-based
// metric occurs on the same transition.
var ErrOverlappingEvents = errors.New("overlapping events")

// ErrInvalidCostFunction is returned when a cost function has a non-positive slope
// or scaling constants that do not form a convex combination.
var ErrInvalidCostFunction = errors.New("invalid cost function")

// ErrAttributeCostFunctionNotFound is returned when a cost function has no term for a QFunction.
var ErrAttributeCostFunctionNotFound = errors.New("attribute cost function not found")

// ErrInvalidModel is returned when an XMDP is assembled from inconsistent parts.
var ErrInvalidModel = errors.New("invalid model")

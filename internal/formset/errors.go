package formset

import "errors"

var (
	// ErrStructural indicates the container, template, counter or button slot
	// is missing or duplicated.
	ErrStructural = errors.New("formset structure error")
	// ErrParse signals the total-forms counter does not hold a non-negative integer.
	ErrParse = errors.New("formset counter parse error")
)

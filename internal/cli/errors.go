package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type missingArgError struct {
	what string
}

func (e missingArgError) Error() string {
	return "missing " + e.what
}

func errMissingArg(what string) error {
	return missingArgError{what: what}
}

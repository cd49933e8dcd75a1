package core

import "errors"

var (
	errNotBody     = errors.New("expected a statement body")
	errNotExpr     = errors.New("expected an expression")
	errChildren    = errors.New("wrong number of children")
	errUnpack      = errors.New("cannot unpack loop item")
	errTemplateArg = errors.New("template name must be a string")
)

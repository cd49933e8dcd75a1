// Package lang implements a Jinja-flavored template language: a lexer, a
// recursive-descent parser, an AST with pluggable statement tags, an
// optimizer, a render context, and an engine that runs templates either by
// walking the tree or by executing a compiled closure program.
//
// # Syntax
//
//	Hello {{ user.name | capitalize }}!
//	{% for item in items if item.visible %}
//	  {{ loop.index }}. {{ item.title ~ ' (' ~ item.count * 2 ~ ')' }}
//	{% endfor %}
//	{# comments are discarded #}
//
// Output constructs are "{{ expr }}", statements are "{% tag ... %}" and
// comments are "{# ... #}". A "-" after "{%" or before "%}" trims the
// adjacent whitespace and at most one newline; a "+" disables trimming on
// that side even when WithTrimBlocks or WithLstripBlocks is set.
//
// # Expressions
//
// Operators, loosest first:
//
//	or
//	and
//	in  not in  is  is not  ==  !=  <  <=  >  >=
//	~
//	+  -
//	*  /  //  %
//	**                (right-associative)
//
// "not" is a prefix that applies to the primary after it. Primaries are
// literals (strings, integers, floats, true, false, none), lists, a
// parenthesized expression, or a variable path such as a.b[0][1:3]['k'].f(x),
// each optionally followed by filters: value|name|name(arg, ...).
//
// # Resolution
//
// The head of a path is looked up in the local variables, then the render
// data, then the engine globals, then each parent context in turn. A name
// found nowhere yields the undefined sentinel, which renders as an empty
// string unless WithStrictUndefined is set. Attribute-first resolution
// tries struct fields and methods before map keys; mapping-first reverses
// the order.
//
// # Execution
//
// Engine.Template loads, parses and optimizes a template once per source
// modification time, coalescing concurrent requests. Template.Render walks
// the tree or, with WithCompiled, runs the compiled program, which is built
// once per template. Both strategies produce identical output. WithCacheDir
// stores the optimized tree on disk so later processes skip parsing.
//
// Statement tags are supplied by extensions; see package
// github.com/ardnew/cairn/lang/core for the standard set.
package lang

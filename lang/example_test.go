package lang_test

import (
	"context"
	"fmt"

	"github.com/ardnew/cairn/lang"
	"github.com/ardnew/cairn/lang/core"
)

func ExampleEngine() {
	e, err := lang.NewEngine(
		lang.WithExtension(core.New()),
		lang.WithLoader(lang.StringsLoader{
			"base": "<title>{% block title %}{% endblock %}</title>",
			"page": "{% extends 'base' %}{% block title %}{{ name|title }}{% endblock %}",
		}),
	)
	if err != nil {
		panic(err)
	}

	tmpl, err := e.Template("page")
	if err != nil {
		panic(err)
	}

	out, err := tmpl.Render(context.Background(), map[string]any{"name": "home page"})
	if err != nil {
		panic(err)
	}

	fmt.Println(out)
	// Output: <title>Home Page</title>
}

func ExampleTemplate_Compiled() {
	e, _ := lang.NewEngine(lang.WithExtension(core.New()))

	tmpl, _ := e.FromString("{% for n in range(1, 4) %}{{ n * n }} {% endfor %}")

	out, _ := tmpl.Compiled(context.Background(), nil)
	state, _ := tmpl.State()

	fmt.Printf("%q %s\n", out, state)
	// Output: "1 4 9 " compiled_in_memory
}

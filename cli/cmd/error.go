package cmd

import "github.com/ardnew/cairn/lang"

var (
	ErrData        = lang.NewError("load template data")
	ErrRender      = lang.NewError("render template")
	ErrWriteConfig = lang.NewError("write configuration file")
	ErrFileExists  = lang.NewError("file exists (use --force to overwrite)")
	ErrEncode      = lang.NewError("encode dump")
)

// +build tools

package tools

import (
	_ "github.com/valyala/quicktemplate/qtc"
)

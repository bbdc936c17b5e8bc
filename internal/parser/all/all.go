// Package all registers every built-in parser. Import it for side effects.
package all

import (
	_ "github.com/crimson-sun/avrca/internal/parser/changes"
	_ "github.com/crimson-sun/avrca/internal/parser/generic"
	_ "github.com/crimson-sun/avrca/internal/parser/qsys"
	_ "github.com/crimson-sun/avrca/internal/parser/syslog"
	_ "github.com/crimson-sun/avrca/internal/parser/tickets"
	_ "github.com/crimson-sun/avrca/internal/parser/zoom"
)

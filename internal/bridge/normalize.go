package bridge

import (
	"errors"
	"strconv"
	"strings"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

// NormalizeError maps a network load failure onto the mediation error taxonomy.
//
// A structured *sdk.LoadError is classified by its code. Anything else is
// parsed from its "<code>: <message>" text: no colon means the network gave no
// status at all and is treated as a connectivity failure; a code that is not
// exactly an integer, surrounding spaces included, is unspecified.
func NormalizeError(err error) mediation.ErrorCode {
	if err == nil {
		return mediation.ErrorCodeUnspecified
	}

	var loadErr *sdk.LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Code == 0 {
			return mediation.ErrorCodeNoConnection
		}
		return codeFor(loadErr.Code)
	}

	return normalizeMessage(err.Error())
}

func normalizeMessage(msg string) mediation.ErrorCode {
	parts := strings.SplitN(msg, ":", 2)
	if len(parts) != 2 {
		return mediation.ErrorCodeNoConnection
	}

	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return mediation.ErrorCodeUnspecified
	}
	return codeFor(code)
}

func codeFor(code int) mediation.ErrorCode {
	switch code {
	case sdk.CodeNoFill:
		return mediation.ErrorCodeNoFill
	case sdk.CodeNotFound:
		return mediation.ErrorCodeInvalidConfiguration
	case sdk.CodeInternalServer:
		return mediation.ErrorCodeServerError
	default:
		return mediation.ErrorCodeUnspecified
	}
}

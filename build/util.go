package build

import (
	"errors"

	afscgap "github.com/schmidtdse/afscgap-go"
)

func errorsIsNotFound(err error) bool {
	return errors.Is(err, afscgap.ErrObjectNotFound)
}

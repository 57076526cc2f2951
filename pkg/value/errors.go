package value

import (
	"strconv"

	"github.com/sapf-lang/sapf/pkg/verr"
)

func typeName(v V) string {
	if v.Obj == nil {
		return "Scalar"
	}
	return v.Obj.Kind().String()
}

func WrongTypeErr(v V, want string) *verr.Error {
	return verr.WrongTypef(typeName(v), want, "operation not supported")
}

func UndefinedOpErr(a, b V, op string) *verr.Error {
	return verr.Newf(verr.UndefinedOperation, "no %s for %s and %s", op, typeName(a), typeName(b))
}

func formatZ(z Z) string {
	return strconv.FormatFloat(z, 'g', -1, 64)
}

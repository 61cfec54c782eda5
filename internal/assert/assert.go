package assert

import "fmt"

func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}

// Positive panics if n <= 0, name is used in the panic message.
func Positive(name string, n int) {
	if n <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %d", name, n))
	}
}

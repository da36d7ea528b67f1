package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBool_Scan(t *testing.T) {
	subtests := []struct {
		name   string
		input  interface{}
		output Bool
		error  bool
	}{
		{"null", nil, Bool{}, false},
		{"y-bytes", []byte("y"), Yes, false},
		{"n-bytes", []byte("n"), No, false},
		{"y-string", "y", Yes, false},
		{"bad", []byte("t"), Bool{}, true},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			var actual Bool
			err := actual.Scan(st.input)

			if st.error {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, st.output, actual)
		})
	}
}

func TestBool_Value(t *testing.T) {
	subtests := []struct {
		name   string
		input  Bool
		output interface{}
	}{
		{"null", Bool{}, nil},
		{"yes", Yes, "y"},
		{"no", No, "n"},
	}

	for _, st := range subtests {
		t.Run(st.name, func(t *testing.T) {
			actual, err := st.input.Value()

			require.NoError(t, err)
			require.Equal(t, st.output, actual)
		})
	}
}

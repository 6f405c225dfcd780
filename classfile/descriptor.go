package classfile

import "fmt"

// DefaultValue returns the opcode that pushes the JVM default value for a
// field descriptor and the number of operand stack slots that value takes.
func DefaultValue(descriptor string) (byte, int, error) {
	if descriptor == "" {
		return 0, 0, fmt.Errorf("empty field descriptor")
	}
	switch descriptor[0] {
	case 'B', 'C', 'I', 'S', 'Z':
		return OpIconst0, 1, nil
	case 'J':
		return OpLconst0, 2, nil
	case 'F':
		return OpFconst0, 1, nil
	case 'D':
		return OpDconst0, 2, nil
	case 'L', '[':
		return OpAconstNull, 1, nil
	default:
		return 0, 0, fmt.Errorf("invalid field descriptor %q", descriptor)
	}
}

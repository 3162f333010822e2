package typesys

// Primitive types and the boxing table of java.lang
var boxes = map[string]string{
	"boolean": "java.lang.Boolean",
	"byte":    "java.lang.Byte",
	"short":   "java.lang.Short",
	"char":    "java.lang.Character",
	"int":     "java.lang.Integer",
	"long":    "java.lang.Long",
	"float":   "java.lang.Float",
	"double":  "java.lang.Double",
}

var unboxes = func() map[string]string {
	m := make(map[string]string, len(boxes))
	for p, b := range boxes {
		m[b] = p
	}
	return m
}()

// widening lists the primitive widening conversions of every primitive type
var widening = map[string][]string{
	"byte":  {"short", "int", "long", "float", "double"},
	"short": {"int", "long", "float", "double"},
	"char":  {"int", "long", "float", "double"},
	"int":   {"long", "float", "double"},
	"long":  {"float", "double"},
	"float": {"double"},
}

// IsPrimitive reports whether name is a primitive type
func IsPrimitive(name string) bool {
	_, ok := boxes[name]
	return ok
}

// Box returns the wrapper class of a primitive type
func Box(primitive string) (string, bool) {
	b, ok := boxes[primitive]
	return b, ok
}

// Unbox returns the primitive type of a wrapper class
func Unbox(wrapper string) (string, bool) {
	p, ok := unboxes[wrapper]
	return p, ok
}

func widens(from, to string) bool {
	if from == to {
		return true
	}
	for _, w := range widening[from] {
		if w == to {
			return true
		}
	}
	return false
}

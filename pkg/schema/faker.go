package schema

// Faker is implemented by types that provide their own example instance
// for the format instructions.
type Faker interface {
	Fake() any
}

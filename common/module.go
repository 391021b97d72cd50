package common

type Module string

const (
	ModuleBlockIndex Module = "blockindex"
)

func (m Module) String() string {
	return string(m)
}

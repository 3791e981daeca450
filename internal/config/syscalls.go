package config

import "os"

// OS implements the provider interfaces of this package with the real
// operating system functions.
type OS struct{}

func (*OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

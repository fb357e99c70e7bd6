package emu

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEmu(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Emu Suite")
}

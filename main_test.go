package formlink_test

import (
	"os"
	"testing"

	"github.com/wagiedev/formlink-go/internal/enginetest"
)

func TestMain(m *testing.M) {
	if enginetest.IsHelper() {
		enginetest.Main()
	}

	os.Exit(m.Run())
}

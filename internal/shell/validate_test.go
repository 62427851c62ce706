package shell_test

import (
	"errors"
	"testing"

	"github.com/abhinav/shelltest/internal/shell"
	"github.com/abhinav/shelltest/internal/shell/shelltest"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		drv := shelltest.NewMockDriver(ctrl)
		drv.EXPECT().Execute("SELECT 1+1;").Return("2", nil)

		assert.NoError(t, shell.Validate(drv, "SELECT 1+1;", shell.Equals("2")))
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		drv := shelltest.NewMockDriver(ctrl)
		drv.EXPECT().Execute("SELECT 1+1;").Return("3", nil)

		err := shell.Validate(drv, "SELECT 1+1;", shell.Equals("2"))
		var assertErr *shell.AssertionError
		require.ErrorAs(t, err, &assertErr)
		assert.Equal(t, "3", assertErr.Output)
	})

	t.Run("execute error", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		drv := shelltest.NewMockDriver(ctrl)

		giveErr := &shell.ShellFaultError{Output: "boom"}
		drv.EXPECT().Execute(gomock.Any()).Return("", giveErr)

		err := shell.Validate(drv, "SELECT 1;", func(string) (bool, string) {
			t.Error("predicate must not be called")
			return true, ""
		})
		assert.True(t, errors.Is(err, giveErr))
	})
}

package pathutils_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/propaudit/internal/utils/path"
)

const testHomeDirectoryConstant = "/home/auditor"

func TestHomeExpanderExpand(testInstance *testing.T) {
	testCases := []struct {
		name         string
		provider     pathutils.HomeDirectoryProvider
		candidate    string
		expectedPath string
	}{
		{name: "tilde_only", candidate: "~", expectedPath: testHomeDirectoryConstant},
		{name: "tilde_prefix", candidate: "~/plugins/core", expectedPath: filepath.Join(testHomeDirectoryConstant, "plugins", "core")},
		{name: "absolute_path", candidate: "/srv/plugins", expectedPath: "/srv/plugins"},
		{name: "other_user", candidate: "~other/plugins", expectedPath: "~other/plugins"},
		{name: "empty", candidate: "", expectedPath: ""},
		{
			name:         "home_unavailable",
			provider:     func() (string, error) { return "", errors.New("no home") },
			candidate:    "~/plugins",
			expectedPath: "~/plugins",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			provider := testCase.provider
			if provider == nil {
				provider = func() (string, error) { return testHomeDirectoryConstant, nil }
			}
			expander := pathutils.NewHomeExpanderWithProvider(provider)
			require.Equal(testInstance, testCase.expectedPath, expander.Expand(testCase.candidate))
		})
	}
}

func TestHomeExpanderExpandRoots(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })

	expanded := expander.ExpandRoots([]string{"~/plugins/", " ", "/srv/plugins/../plugins", "~/plugins", "s3://bucket/plugins/", "/srv/plugins"})
	require.Equal(testInstance, []string{
		filepath.Join(testHomeDirectoryConstant, "plugins"),
		"/srv/plugins",
		"s3://bucket/plugins/",
	}, expanded)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package someip

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Environment variables read at startup.
const (
	EnvApplicationName = "VSOMEIP_APPLICATION_NAME"
	EnvConfiguration   = "VSOMEIP_CONFIGURATION"
)

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("someip: configuration error")

// ConfigurationError lists everything that keeps the client from
// starting.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "someip: " + strings.Join(e.Problems, "; ")
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Environment is the validated startup environment.
type Environment struct {
	Application string
	ConfigPath  string
}

// LoadEnvironment reads the application name and configuration path
// through getenv (os.Getenv in production) and checks that the
// configuration file is readable by this process.
func LoadEnvironment(getenv func(string) string) (Environment, error) {
	environment := Environment{
		Application: getenv(EnvApplicationName),
		ConfigPath:  getenv(EnvConfiguration),
	}

	var problems []string
	if environment.Application == "" {
		problems = append(problems, EnvApplicationName+" not set")
	}
	if environment.ConfigPath == "" {
		problems = append(problems, EnvConfiguration+" not set")
	} else if err := unix.Access(environment.ConfigPath, unix.R_OK); err != nil {
		problems = append(problems, fmt.Sprintf("%s file %s is not readable: %v", EnvConfiguration, environment.ConfigPath, err))
	}

	if len(problems) > 0 {
		return environment, &ConfigurationError{Problems: problems}
	}
	return environment, nil
}

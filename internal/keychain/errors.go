package keychain

import "fmt"

// ServiceNotConfiguredError is returned when a service is missing from the keychain
type ServiceNotConfiguredError struct {
	Name string
}

func (e ServiceNotConfiguredError) Error() string {
	return fmt.Sprintf("service %s is not configured in the local keychain", e.Name)
}

// OrgNotFoundError is returned when an org is missing from the keychain
type OrgNotFoundError struct {
	Name string
}

func (e OrgNotFoundError) Error() string {
	return fmt.Sprintf("org %s is not configured in the local keychain", e.Name)
}

//go:build darwin

package config

import "fmt"

func keychainGet(service, account string) ([]byte, error) {
	val, ok, err := runLookup("security", "find-generic-password", "-s", service, "-a", account, "-w")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no secret %s/%s", service, account)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	return runTool("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value)
}

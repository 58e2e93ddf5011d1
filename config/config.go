// Config loads configuration.
package config

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
)

const Version = "1.1"

// GetInt loads the environment variable varName, converts it to an integer,
// and returns that integer or an error.
func GetInt(varName string) (int, error) {
	envVar := os.Getenv(varName)
	return strconv.Atoi(envVar)
}

// GetString loads the environment variable varName, or returns defaultVal if
// it is unset.
func GetString(varName string, defaultVal string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return defaultVal
}

// GetURLOrBail loads and parses the environment variable urlEnvVar, and exits
// the process if it is unset or unparseable.
func GetURLOrBail(urlEnvVar string) *url.URL {
	envUrl := os.Getenv(urlEnvVar)
	if envUrl == "" {
		log.Fatal(fmt.Errorf("No URL configured. Please set %s", urlEnvVar))
	}
	parsedUrl, err := url.Parse(envUrl)
	if err != nil {
		log.Fatalf("Invalid url: %s. %s\n", envUrl, err.Error())
	}
	return parsedUrl
}

// SetMaxIdleConnsPerHost sets the MaxIdleConnsPerHost value for the default
// HTTP transport. If you are using a custom transport, calling this function
// won't change anything.
func SetMaxIdleConnsPerHost(maxConns int) {
	http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost = maxConns
}

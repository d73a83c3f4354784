package env

import "os"

func defaultLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

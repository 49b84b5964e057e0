// Package errutils provides a set of utilities for working with errors in Go.
//
// Example:
//
// MultiError collects several errors and reports them as one, one message per line:
//
//	multiErr := errutils.NewMultiErr(nil)
//	multiErr.Add(errors.New("first failure"))
//	multiErr.Add(errors.New("second failure"))
//	if multiErr.HasErrors() {
//	    fmt.Println(multiErr)
//	}
//
// CustomError builds errors from a format template:
//
//	notFound := errutils.NewCustomError("item %s not found")
//	err := notFound.Err("config") // "item config not found"
package errutils

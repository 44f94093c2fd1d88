package session

import "errors"

// ErrorKind classifies a failed directory change.
type ErrorKind int

const (
	NotImplemented ErrorKind = iota + 1
	NoSuchDirectory
	NotADirectory
)

// Sentinels matched by DirError.Is.
var (
	ErrNotImplemented  = errors.New("cd - not implemented")
	ErrNoSuchDirectory = errors.New("no such directory")
	ErrNotADirectory   = errors.New("not a directory")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case NotImplemented:
		return ErrNotImplemented
	case NoSuchDirectory:
		return ErrNoSuchDirectory
	case NotADirectory:
		return ErrNotADirectory
	}
	return nil
}

// DirError is returned by ChangeDirectory.
type DirError struct {
	Kind ErrorKind
	Expr string // the argument as typed
	Err  error  // underlying stat error, if any
}

func (e *DirError) Error() string {
	switch e.Kind {
	case NotImplemented:
		return "cd - not implemented"
	case NotADirectory:
		return "not a directory: " + e.Expr
	}
	return "no such directory: " + e.Expr
}

// Message is the line shown to the user on stderr.
func (e *DirError) Message() string {
	switch e.Kind {
	case NotImplemented:
		return "cd - not implemented\n"
	case NotADirectory:
		return "Not a directory: " + e.Expr + "\n"
	}
	return "No such directory: " + e.Expr + "\n"
}

func (e *DirError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *DirError) Unwrap() error {
	return e.Err
}

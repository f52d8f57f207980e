// Package cli builds the cobra command tree, translates flags into an
// app.Config, and classifies the error App.Run returns into the process
// exit code the invocation contract promises.
package cli

package main

// General API documentation for swaggo. Run `swag init -g cmd/localchatd/docs.go` to regenerate docs.
//
// @title           localchat API
// @version         1.0
// @description     Streaming chat sessions and model discovery against a local Ollama server.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http

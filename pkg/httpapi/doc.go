// Package httpapi contains the HTTP surface of wastewatch: wire types in
// types, request middleware in middleware and endpoint handlers in handlers.
// pkg/server assembles them into a server.
package httpapi

/*
Package client provides a Go client library for the Beacon gRPC API.

Client wraps rpc.RegistryClient with one method per registry operation, a
10 second per-call timeout and the sender metadata every mutating call
needs.

	c, err := client.NewClient("127.0.0.1:8080", ownerAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	alert, err := c.CreateAlert(&types.CreateAlertRequest{
		Blockchain: "ethereum",
		Protocol:   "uniswap",
		Method:     "swap",
	})

Read-only callers may leave the sender empty and point the client at the
manager's unix socket:

	c, err := client.NewClient("unix:///var/run/beacon.sock", "")

Errors are gRPC status errors; use status.Code to branch on them.
*/
package client

/*
Package authsdk is a typed Go client for the Budg authentication service.

# Usage

Create a Client with the service base URL. Operations that act on the
signed-in principal take the access token returned by Login:

	client := authsdk.NewClient("https://auth.example.com")

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	})

	tok, err := client.Login(ctx, "ada@example.com", "correct horse battery", "")
	if tok.MFARequired {
		tok, err = client.VerifyMFA(ctx, tok.AccessToken, code)
	}

	me, err := client.Me(ctx, tok.AccessToken)

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status
and the error kind reported by the service:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeRateLimited {
		time.Sleep(apiErr.RetryAfter)
	}

The package has no dependencies outside the standard library so it can be
imported by frontends and tooling without pulling in the server.
*/
package authsdk

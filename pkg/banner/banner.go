package banner

import "fmt"

const banner = `
████████╗ █████╗ ███████╗██╗  ██╗ ██████╗██╗  ██╗ █████╗ ████████╗
╚══██╔══╝██╔══██╗██╔════╝██║ ██╔╝██╔════╝██║  ██║██╔══██╗╚══██╔══╝
   ██║   ███████║███████╗█████╔╝ ██║     ███████║███████║   ██║
   ██║   ██╔══██║╚════██║██╔═██╗ ██║     ██╔══██║██╔══██║   ██║
   ██║   ██║  ██║███████║██║  ██╗╚██████╗██║  ██║██║  ██║   ██║
   ╚═╝   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print shows startup info for the dev server.
func Print(addr, dbPath, version string, retention bool) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", addr)
	fmt.Printf("DB Path:   %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if retention {
		fmt.Println("Retention: enabled")
	} else {
		fmt.Println("Retention: disabled")
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/projects/{id}/messages?offset=<n>&limit=<n> - list chat messages")
	fmt.Println("POST /v1/projects/{id}/messages - send a message (JSON: author, body)")
	fmt.Println("DELETE /v1/messages/{id} - soft-delete a message")
	fmt.Println("GET  /docs/ - interactive API reference")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://%s/v1/projects/p1/messages' -d '{\"author\":\"ann\",\"body\":\"hello\"}'\n", addr)
	fmt.Printf("curl 'http://%s/v1/projects/p1/messages?limit=10'\n", addr)
}

// taskchat-bench hammers a taskchat backend with message sends and list
// fetches to gauge throughput of the dev server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:8080", "backend base URL")
	project := flag.String("project", "bench", "project to write into")
	n := flag.Int("n", 1000, "total messages to send")
	c := flag.Int("c", 8, "concurrent workers")
	lists := flag.Int("lists", 100, "list fetches to run after the writes")
	limit := flag.Int("limit", 500, "limit parameter for list fetches")
	flag.Parse()

	client := &fasthttp.Client{
		Name:            "taskchat-bench",
		MaxConnsPerHost: *c * 2,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
	}

	postURL := fmt.Sprintf("%s/v1/projects/%s/messages", *server, *project)
	listURL := fmt.Sprintf("%s/v1/projects/%s/messages?limit=%d", *server, *project, *limit)

	var sent, failed uint64
	start := time.Now()
	var wg sync.WaitGroup
	per := *n / *c
	for w := 0; w < *c; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				body, _ := json.Marshal(map[string]string{
					"author": fmt.Sprintf("bench-%d", worker),
					"body":   fmt.Sprintf("message %d from worker %d", i, worker),
				})
				if err := post(client, postURL, body); err != nil {
					atomic.AddUint64(&failed, 1)
					continue
				}
				atomic.AddUint64(&sent, 1)
			}
		}(w)
	}
	wg.Wait()
	writeDur := time.Since(start)

	start = time.Now()
	var listFailed uint64
	for i := 0; i < *lists; i++ {
		if err := get(client, listURL); err != nil {
			listFailed++
		}
	}
	listDur := time.Since(start)

	fmt.Printf("writes: %d ok, %d failed in %v (%.0f/s)\n",
		sent, failed, writeDur, float64(sent)/writeDur.Seconds())
	fmt.Printf("lists:  %d ok, %d failed in %v (%.0f/s)\n",
		*lists-int(listFailed), listFailed, listDur, float64(*lists)/listDur.Seconds())
	if failed > 0 || listFailed > 0 {
		os.Exit(1)
	}
}

func post(c *fasthttp.Client, url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)
	if err := c.Do(req, resp); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

func get(c *fasthttp.Client, url string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	if err := c.Do(req, resp); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode())
	}
	return nil
}

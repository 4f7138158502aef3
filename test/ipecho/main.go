package main

// 手动测试用的迷你回显服务：模仿 httpbin.org/ip 的响应，
// 方便在本地对验证器和竞速抓取做端到端测试。
//
//	go run ./test/ipecho -addr :8080

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	http.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, "{\n  \"origin\": %q\n}\n", host)
	})

	log.Printf("ipecho listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

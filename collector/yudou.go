package collector

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"subcollect/internal/shared/logger"
)

var (
	yudouAESPattern  = regexp.MustCompile(`U2FsdGVkX1[0-9A-Za-z+/=]+`)
	yudouYamlPattern = regexp.MustCompile(`https?://[^\s'"<>]+?\.yaml`)
	yudouTxtPattern  = regexp.MustCompile(`https?://[^\s'"<>]+?\.txt`)
)

// YudouSite 采集 yudou789：今日页面链接的文本是"免费精选节点"，
// 订阅地址混在一个 div 的正文里用正则抠出来。下载到的内容可能是
// OpenSSL 风格的 AES 密文（4 位数字口令），写盘前暴力解开。
type YudouSite struct {
	homePage string
}

func NewYudouSite() *YudouSite {
	return &YudouSite{homePage: "https://www.yudou789.top/"}
}

func (s *YudouSite) Name() string { return "yudou" }

func (s *YudouSite) Discover(ctx context.Context, c *Client) (*Plan, error) {
	return discoverTwoStep(ctx, c, s.Name(), s.homePage,
		func(home *goquery.Document) string {
			return linkWithText(home, "免费精选节点", 0)
		},
		func(today *goquery.Document) []Task {
			var text string
			today.Find("div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				hasMarker := false
				sel.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
					if strings.Contains(p.Text(), "免费节点订阅链接") {
						hasMarker = true
					}
				})
				if hasMarker {
					text = sel.Text()
					return false
				}
				return true
			})

			var tasks []Task
			if url := yudouYamlPattern.FindString(text); url != "" {
				tasks = append(tasks, Task{Filename: "clash.yaml", URL: url, Process: yudouDecryptContent})
			}
			if url := yudouTxtPattern.FindString(text); url != "" {
				tasks = append(tasks, Task{Filename: "v2ray.txt", URL: url, Process: yudouDecryptContent})
			}
			return tasks
		})
}

// yudouDecryptContent 识别并解开 AES 密文；内容不是密文时原样返回。
func yudouDecryptContent(content string) string {
	blob := yudouAESPattern.FindString(content)
	if blob == "" {
		return content
	}
	plain, err := bruteForceOpenSSLAES(blob, 1000, 9999)
	if err != nil {
		l := logger.WithComponent("Collector/yudou")
		l.Warn().Err(err).Msg("Failed to decrypt content, keeping raw.")
		return content
	}
	return plain
}

// bruteForceOpenSSLAES 在 [min, max] 范围内穷举数字口令解密，
// 成功的结果做一次 URL 反转义后返回。
func bruteForceOpenSSLAES(ciphertext string, min, max int) (string, error) {
	for pwd := min; pwd <= max; pwd++ {
		plain, err := decryptOpenSSLAES(ciphertext, fmt.Sprintf("%d", pwd))
		if err != nil {
			continue
		}
		unescaped, err := url.QueryUnescape(plain)
		if err != nil {
			return plain, nil
		}
		return unescaped, nil
	}
	return "", fmt.Errorf("failed to brute-force the encryption password")
}

// decryptOpenSSLAES 解开 "Salted__" 前缀的 OpenSSL AES-256-CBC 密文，
// 密钥和 IV 用 EVP_BytesToKey (MD5) 从口令和盐派生。
func decryptOpenSSLAES(ciphertext, password string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	if len(data) < 16 || !bytes.HasPrefix(data, []byte("Salted__")) {
		return "", fmt.Errorf("ciphertext missing 'Salted__' header")
	}
	salt := data[8:16]
	body := data[16:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext is not block aligned")
	}

	key, iv := evpBytesToKey(password, salt, 32, 16)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("decrypted data is not valid UTF-8")
	}
	return string(plain), nil
}

// evpBytesToKey 复刻 OpenSSL 的 EVP_BytesToKey 密钥派生 (MD5)。
func evpBytesToKey(password string, salt []byte, keyLen, ivLen int) (key, iv []byte) {
	var derived, prev []byte
	pw := []byte(password)
	for len(derived) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pw)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize {
		return nil, fmt.Errorf("invalid padding size")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding bytes")
		}
	}
	return data[:len(data)-pad], nil
}

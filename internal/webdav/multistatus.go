package webdav

import (
	"encoding/xml"
	"fmt"
	"net/url"

	"github.com/alexjbarnes/dav-sync/internal/tree"
)

// Resource is one <response> of a PROPFIND listing with the properties
// the sync cares about. Path is decoded and relative to the DAV root;
// collections usually keep the trailing slash the server sent.
type Resource struct {
	Path string

	// LastModified is the raw getlastmodified value (RFC 1123), empty
	// when the server did not send one.
	LastModified string

	// ContentLength is the raw getcontentlength value. HasLength is
	// false when the property was absent, which marks a collection.
	ContentLength string
	HasLength     bool
}

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Status string `xml:"DAV: status"`
	Prop   prop   `xml:"DAV: prop"`
}

type prop struct {
	LastModified  *string `xml:"DAV: getlastmodified"`
	ContentLength *string `xml:"DAV: getcontentlength"`
}

// parseMultistatus decodes a 207 body. Hrefs outside root are dropped.
// Only propstat blocks with a 2xx (or missing) status contribute
// properties, so a 404 block listing getcontentlength for a collection
// does not turn it into a file.
func parseMultistatus(body []byte, root string) ([]Resource, error) {
	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("decoding multistatus: %w", err)
	}

	resources := make([]Resource, 0, len(ms.Responses))

	for _, r := range ms.Responses {
		p, ok := hrefPath(r.Href, root)
		if !ok {
			continue
		}

		res := Resource{Path: p}

		for _, ps := range r.Propstats {
			code := statusCodeFromLine(ps.Status)
			if code != 0 && (code < 200 || code > 299) {
				continue
			}

			if ps.Prop.LastModified != nil {
				res.LastModified = *ps.Prop.LastModified
			}

			if ps.Prop.ContentLength != nil {
				res.ContentLength = *ps.Prop.ContentLength
				res.HasLength = true
			}
		}

		resources = append(resources, res)
	}

	return resources, nil
}

// hrefPath turns an href (absolute URL or absolute path, percent
// encoded) into a decoded path relative to root.
func hrefPath(href, root string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	return tree.Rel(root, u.Path)
}

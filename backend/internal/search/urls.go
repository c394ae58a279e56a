package search

import "fmt"

// URLFor builds an absolute URL for a named route.
type URLFor func(route string, params map[string]string) string

// Route names used for hit links.
const (
	RouteArchive  = "data.package"
	RouteManifest = "data.manifest"
)

// AddURLs links a hit to its archive download and manifest.
func AddURLs(hit Hit, urlFor URLFor) Hit {
	params := map[string]string{
		"collection": fmt.Sprint(hit["collection"]),
		"package_id": fmt.Sprint(hit["id"]),
	}
	hit["archive_url"] = urlFor(RouteArchive, params)
	hit["manifest_url"] = urlFor(RouteManifest, params)
	return hit
}

// URLConverter returns a pager converter that applies AddURLs to every hit.
func URLConverter(urlFor URLFor) func([]Hit) []Hit {
	return func(hits []Hit) []Hit {
		for i := range hits {
			hits[i] = AddURLs(hits[i], urlFor)
		}
		return hits
	}
}

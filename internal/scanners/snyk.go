package scanners

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/package-url/packageurl-go"
	"github.com/tidwall/gjson"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

const snykVulnURL = "https://security.snyk.io/vuln/"

// Snyk normalizes `snyk test --json` and `snyk container test --json` output
type Snyk struct {
	Now func() time.Time
}

func NewSnyk() *Snyk {
	return &Snyk{Now: time.Now}
}

func (s *Snyk) Name() string { return "snyk" }

// Fragment reads and normalizes the report at path
func (s *Snyk) Fragment(path string) (schema.BOM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.BOM{}, fmt.Errorf("read snyk report: %w", err)
	}
	bom, err := s.Normalize(data)
	if err != nil {
		return schema.BOM{}, fmt.Errorf("%s: %w", path, err)
	}
	return bom, nil
}

// Normalize converts one report. Multi-project output (--all-projects) is a
// JSON array and every project is folded into the same fragment.
func (s *Snyk) Normalize(data []byte) (schema.BOM, error) {
	if !gjson.ValidBytes(data) {
		return schema.BOM{}, fmt.Errorf("%w: not valid JSON", ErrInvalidReport)
	}

	root := gjson.ParseBytes(data)
	var projects []gjson.Result
	switch {
	case root.IsArray():
		projects = root.Array()
	case root.IsObject():
		projects = []gjson.Result{root}
	default:
		return schema.BOM{}, fmt.Errorf("%w: expected an object or array", ErrInvalidReport)
	}

	bom := schema.New()
	bom.Version = 0
	for i, p := range projects {
		if msg := p.Get("error"); msg.Exists() {
			return schema.BOM{}, fmt.Errorf("%w: project %d: snyk error: %s", ErrInvalidReport, i, msg.String())
		}
		if err := s.addProject(&bom, p); err != nil {
			return schema.BOM{}, fmt.Errorf("project %d: %w", i, err)
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	bom.Metadata = schema.NewObject(
		schema.Member{Key: "date", Value: schema.String(now().UTC().Format(time.RFC3339))},
		schema.Member{Key: "tools", Value: schema.Array(schema.ObjectValue(schema.NewObject(
			schema.Member{Key: "vendor", Value: schema.String("Snyk")},
			schema.Member{Key: "name", Value: schema.String("snyk")},
		)))},
	)

	return bom, nil
}

func (s *Snyk) addProject(bom *schema.BOM, p gjson.Result) error {
	pm := strings.ToLower(p.Get("packageManager").String())
	osPackages := isOSPackageManager(pm)
	distro := strings.ToLower(p.Get("targetOS.name").String())

	if image := p.Get("docker.baseImage").String(); image != "" {
		bom.ContainerDependencies = appendUnique(bom.ContainerDependencies, imageComponent(image))
	}

	for _, v := range p.Get("vulnerabilities").Array() {
		if !v.IsObject() {
			return fmt.Errorf("%w: vulnerability entry is %s", ErrInvalidReport, v.Type)
		}

		// from[0] is the scanned project itself
		from := v.Get("from").Array()
		for j := 1; j < len(from); j++ {
			name, version := splitNameVersion(from[j].String())
			if name == "" {
				continue
			}
			dep := packageComponent(pm, distro, name, version)
			if osPackages {
				bom.OSDependencies = appendUnique(bom.OSDependencies, dep)
			} else {
				bom.AppDependencies = appendUnique(bom.AppDependencies, dep)
			}
		}

		vuln, err := vulnerability(v)
		if err != nil {
			return err
		}
		bom.Vulnerabilities = appendUnique(bom.Vulnerabilities, vuln)
	}
	return nil
}

// vulnerability keeps only path-independent fields so the same issue reached
// through several dependency paths collapses to one entry
func vulnerability(v gjson.Result) (schema.Vulnerability, error) {
	var out schema.Vulnerability
	id := v.Get("id").String()
	if id == "" {
		return out, fmt.Errorf("%w: vulnerability without id", ErrInvalidReport)
	}

	out.Set("id", schema.String(id))
	for _, f := range []struct{ key, path string }{
		{"score", "cvssScore"},
		{"severity", "severity"},
		{"description", "title"},
	} {
		if err := setFromResult(&out, f.key, v.Get(f.path)); err != nil {
			return out, err
		}
	}
	out.Set("url", schema.String(snykVulnURL+id))
	for _, f := range []struct{ key, path string }{
		{"created", "creationTime"},
		{"package", "packageName"},
		{"version", "version"},
	} {
		if err := setFromResult(&out, f.key, v.Get(f.path)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func setFromResult(o *schema.Object, key string, r gjson.Result) error {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v, err := schema.FromResult(r)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	o.Set(key, v)
	return nil
}

func appendUnique(list []schema.Object, o schema.Object) []schema.Object {
	if schema.ContainsEqual(list, o) {
		return list
	}
	return append(list, o)
}

// splitNameVersion splits "name@version" at the last '@', leaving scoped npm
// names such as "@types/node@20.1.0" intact
func splitNameVersion(s string) (name, version string) {
	if i := strings.LastIndex(s, "@"); i > 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func isOSPackageManager(pm string) bool {
	switch pm {
	case "deb", "apk", "rpm", "linux":
		return true
	}
	return false
}

var purlTypes = map[string]string{
	"npm":        packageurl.TypeNPM,
	"yarn":       packageurl.TypeNPM,
	"pnpm":       packageurl.TypeNPM,
	"maven":      packageurl.TypeMaven,
	"gradle":     packageurl.TypeMaven,
	"sbt":        packageurl.TypeMaven,
	"pip":        packageurl.TypePyPi,
	"poetry":     packageurl.TypePyPi,
	"pipenv":     packageurl.TypePyPi,
	"rubygems":   packageurl.TypeGem,
	"gomodules":  packageurl.TypeGolang,
	"golangdep":  packageurl.TypeGolang,
	"govendor":   packageurl.TypeGolang,
	"nuget":      packageurl.TypeNuget,
	"paket":      packageurl.TypeNuget,
	"composer":   packageurl.TypeComposer,
	"cocoapods":  packageurl.TypeCocoapods,
	"hex":        packageurl.TypeHex,
	"cargo":      packageurl.TypeCargo,
	"swift":      packageurl.TypeSwift,
	"deb":        packageurl.TypeDebian,
	"apk":        packageurl.TypeApk,
	"rpm":        packageurl.TypeRPM,
	"linux":      packageurl.TypeGeneric,
}

func purlType(pm string) string {
	if t, ok := purlTypes[pm]; ok {
		return t
	}
	return packageurl.TypeGeneric
}

func packageComponent(pm, distro, name, version string) schema.Component {
	typ := purlType(pm)
	namespace, short := "", name

	switch typ {
	case packageurl.TypeMaven:
		if i := strings.Index(name, ":"); i > 0 {
			namespace, short = name[:i], name[i+1:]
		}
	case packageurl.TypeNPM, packageurl.TypeComposer:
		if i := strings.Index(name, "/"); i > 0 {
			namespace, short = name[:i], name[i+1:]
		}
	case packageurl.TypeGolang:
		if i := strings.LastIndex(name, "/"); i > 0 {
			namespace, short = name[:i], name[i+1:]
		}
	case packageurl.TypeDebian, packageurl.TypeRPM, packageurl.TypeApk:
		// container scans report "source/binary"; the purl names the binary
		if i := strings.LastIndex(name, "/"); i >= 0 {
			short = name[i+1:]
		}
		namespace = distro
	}

	c := schema.NewObject(schema.Member{Key: "name", Value: schema.String(name)})
	if version != "" {
		c.Set("version", schema.String(version))
	}
	purl := packageurl.NewPackageURL(typ, namespace, short, version, nil, "")
	c.Set("purl", schema.String(purl.ToString()))
	return c
}

// imageComponent splits "registry:5000/library/node:18-alpine" or
// "node@sha256:..." into a name and a tag or digest
func imageComponent(image string) schema.Component {
	name, version := image, ""
	if i := strings.LastIndex(name, "@"); i > 0 {
		name, version = name[:i], name[i+1:]
	} else if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		name, version = name[:i], name[i+1:]
	}

	namespace, short := "", name
	if i := strings.LastIndex(name, "/"); i > 0 {
		namespace, short = name[:i], name[i+1:]
	}

	c := schema.NewObject(schema.Member{Key: "name", Value: schema.String(name)})
	if version != "" {
		c.Set("version", schema.String(version))
	}
	purl := packageurl.NewPackageURL(packageurl.TypeDocker, namespace, short, version, nil, "")
	c.Set("purl", schema.String(purl.ToString()))
	return c
}

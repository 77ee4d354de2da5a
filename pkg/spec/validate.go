package spec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmaojo/apicentric/pkg/apierrors"
	"github.com/pmaojo/apicentric/pkg/template"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Validate checks a Service against the rules of §4.1 and returns every
// violation found rather than stopping at the first one.
func Validate(svc *Service) apierrors.InvalidSpecList {
	var errs apierrors.InvalidSpecList
	file := svc.SourcePath

	add := func(reason, hint string) {
		errs = append(errs, &apierrors.InvalidSpec{File: file, Reason: reason, Hint: hint})
	}

	if svc.Name == "" {
		add("name is required", "")
	} else {
		if len(svc.Name) > 100 {
			add("name exceeds 100 characters", "")
		}
		if !namePattern.MatchString(svc.Name) {
			add(fmt.Sprintf("name %q contains characters other than letters, digits, '_' or '-'", svc.Name), "")
		}
		if strings.Contains(svc.Name, "..") || strings.ContainsAny(svc.Name, "/\\") {
			add(fmt.Sprintf("name %q must not contain path separators or '..'", svc.Name), "")
		}
	}

	if svc.Server.BasePath == "" {
		add("server.base_path is required", "")
	} else if !strings.HasPrefix(svc.Server.BasePath, "/") {
		add(fmt.Sprintf("server.base_path %q must start with '/'", svc.Server.BasePath), "")
	}
	if svc.Server.Port != 0 && (svc.Server.Port < 1 || svc.Server.Port > 65535) {
		add(fmt.Sprintf("server.port %d is out of range [1,65535]", svc.Server.Port), "")
	}

	if len(svc.Endpoints) == 0 {
		add("service defines no endpoints", "add at least one endpoint")
	}

	for i, ep := range svc.Endpoints {
		prefix := fmt.Sprintf("endpoints[%d]", i)

		if ep.Method == "" {
			add(prefix+": method is required", "")
		} else if !validMethods[strings.ToUpper(ep.Method)] {
			add(fmt.Sprintf("%s: unsupported method %q", prefix, ep.Method), "")
		}

		if ep.Path == "" {
			add(prefix+": path is required", "")
		} else if !strings.HasPrefix(ep.Path, "/") && !strings.HasPrefix(ep.Path, "^") {
			add(fmt.Sprintf("%s: path %q must start with '/' (or '^' for a regex)", prefix, ep.Path), "")
		}

		if len(ep.Responses) == 0 && len(ep.Scenarios) == 0 {
			add(prefix+": endpoint must declare at least one response or scenario", "")
		}

		for status, rs := range ep.Responses {
			if status < 100 || status > 599 {
				add(fmt.Sprintf("%s: response status %d is out of range [100,599]", prefix, status), "")
				continue
			}
			validateResponse(rs, fmt.Sprintf("%s.responses[%d]", prefix, status), add)
		}

		for j, sc := range ep.Scenarios {
			scPrefix := fmt.Sprintf("%s.scenarios[%d]", prefix, j)
			if sc.Response == nil {
				add(scPrefix+": scenario has no response", "")
				continue
			}
			validateResponse(sc.Response, scPrefix+".response", add)
			if sc.Conditions != "" {
				if err := template.Check(sc.Conditions); err != nil {
					add(fmt.Sprintf("%s.conditions: %v", scPrefix, err), "fix the condition expression")
				}
			}
		}
	}

	return errs
}

func validateResponse(rs *ResponseSpec, prefix string, add func(reason, hint string)) {
	if rs == nil {
		add(prefix+": response is nil", "")
		return
	}
	if rs.Body != "" {
		if err := template.Check(rs.Body); err != nil {
			add(fmt.Sprintf("%s.body: template error: %v", prefix, err), "templates are parse-checked, not executed, during validation")
		}
	}
	if rs.Condition != "" {
		if err := template.Check(rs.Condition); err != nil {
			add(fmt.Sprintf("%s.condition: %v", prefix, err), "")
		}
	}
	if rs.DelayMs < 0 {
		add(fmt.Sprintf("%s.delay_ms: must be >= 0", prefix), "")
	}
}

// Copyright 2026 The ESP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package esperr

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// templates maps a message name to a golang.org/x/text/message format
// string, one per supported locale. Embeddings that need more locales or
// nicer phrasing register their own catalog against the same message names.
var templates = map[MessageName]map[language.Tag]string{
	MsgMalformedHeaderUnrecognized: {
		language.English: "unrecognized message type code 0x%x",
		language.Spanish: "código de tipo de mensaje no reconocido 0x%x",
	},
	MsgMalformedHeaderLength: {
		language.English: "expected a 2-element frame, got %d elements",
		language.Spanish:  "se esperaba un marco de 2 elementos, se obtuvieron %d elementos",
	},
	MsgUnknownRequestID: {
		language.English: "no handler registered for request id %v",
		language.Spanish:  "no hay manejador registrado para el id de solicitud %v",
	},
	MsgUnknownEvaluator: {
		language.English: "unknown evaluator",
		language.Spanish:  "evaluador desconocido",
	},
	MsgInvalidPackageZipChecksum: {
		language.English: "checksum mismatch for package %s: computed %s, expected %s (from %s)",
		language.Spanish:  "discrepancia de suma de comprobación para el paquete %s: calculado %s, esperado %s (de %s)",
	},
	MsgInvalidPackageZipURL: {
		language.English: "package zip url %s is not https",
		language.Spanish:  "la url del zip del paquete %s no es https",
	},
	MsgBadHTTPStatusCode: {
		language.English: "unexpected HTTP status %d fetching %s",
		language.Spanish:  "estado HTTP inesperado %d al obtener %s",
	},
}

// registerCatalog builds a message.Catalog from templates so a
// message.Printer for any registered language formats every known message
// name with its localized template, falling back to the raw name for
// anything not yet translated.
func registerCatalog() *catalog {
	c := &catalog{printers: map[language.Tag]*message.Printer{}}
	for _, lang := range []language.Tag{language.English, language.Spanish} {
		for name, perLang := range templates {
			tmpl, ok := perLang[lang]
			if !ok {
				continue
			}
			_ = message.SetString(lang, string(name), tmpl)
		}
		c.printers[lang] = message.NewPrinter(lang)
	}
	return c
}

type catalog struct {
	printers map[language.Tag]*message.Printer
}

var defaultCatalog = registerCatalog()

// Localize renders a message name with its arguments using the templates
// registered for lang. A language with no registered printer is rendered
// with the English printer; only when no printer exists at all is the stable
// message name itself returned, followed by its arguments.
func Localize(lang language.Tag, name MessageName, args ...interface{}) string {
	p, ok := defaultCatalog.printers[lang]
	if !ok {
		p = defaultCatalog.printers[language.English]
	}
	if p == nil {
		return fmt.Sprintf("%s%v", name, args)
	}
	return p.Sprintf(string(name), args...)
}

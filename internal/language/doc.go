// Package language normalizes the language field of alignment requests.
//
// Whisper expects a base ISO 639-1 code. Requests may carry BCP 47 tags
// ("zh-Hans-CN"), ISO 639-2 codes ("zho", "chi"), or English names
// ("Chinese"); all of them reduce to the same base code here.
package language
